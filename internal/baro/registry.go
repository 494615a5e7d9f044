package baro

// Backend is a sensor driver feeding one or more instances. Backends claim
// their slots with ClaimInstance while being constructed and are then
// added with RegisterBackend.
type Backend interface {
	Name() string
	// Accumulate stages any pending readings into the backend's slots. It
	// runs on the timer goroutine and must not block.
	Accumulate()
}

// Claimer hands out instance slots to backend constructors.
type Claimer interface {
	ClaimInstance() (*Slot, error)
	Clock() Clock
}

var _ Claimer = (*Frontend)(nil)

// ClaimInstance reserves the next free instance and returns its slot.
func (f *Frontend) ClaimInstance() (*Slot, error) {
	if f.numInstances >= MaxInstances {
		return nil, ErrTooManyInstances
	}
	inst := &f.instances[f.numInstances]
	f.numInstances++
	return &inst.slot, nil
}

// RegisterBackend adds a backend and records which claimed slots it owns.
// On error the registry is unchanged.
func (f *Frontend) RegisterBackend(b Backend, owned ...*Slot) error {
	if f.numBackends >= MaxBackends {
		return ErrTooManyBackends
	}
	for _, s := range owned {
		if s == nil || s.index >= f.numInstances || &f.instances[s.index].slot != s {
			return ErrForeignSlot
		}
	}

	idx := f.numBackends
	f.backends[idx] = b
	f.numBackends++
	for _, s := range owned {
		f.instances[s.index].backend = idx
	}
	f.logger.Info("registered barometer backend", "backend", b.Name(), "instances", len(owned))
	return nil
}

// BackendName returns the name of the backend feeding instance i, or ""
// when the instance has no registered owner.
func (f *Frontend) BackendName(i int) string {
	inst := f.inst(i)
	if inst == nil || inst.backend < 0 {
		return ""
	}
	return f.backends[inst.backend].Name()
}

// SetKind selects the pressure model of instance i.
func (f *Frontend) SetKind(i int, k Kind) error {
	inst := f.inst(i)
	if inst == nil {
		return ErrNoInstance
	}
	inst.kind = k
	return nil
}

// SetPrecisionMultiplier sets the factor converting the native pressure
// unit of instance i to Pascal.
func (f *Frontend) SetPrecisionMultiplier(i int, m float64) error {
	inst := f.inst(i)
	if inst == nil {
		return ErrNoInstance
	}
	if m <= 0 {
		m = 1
	}
	inst.precisionMultiplier = m
	return nil
}

// Accumulate asks every backend to stage pending readings. It is the only
// Frontend method that may run on the timer goroutine.
func (f *Frontend) Accumulate() {
	for i := 0; i < f.numBackends; i++ {
		f.backends[i].Accumulate()
	}
}
