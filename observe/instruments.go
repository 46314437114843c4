package observe

// Instruments bundles the tracer, metrics and logger handed to components.
// A zero field is replaced by its no-op counterpart in Normalize.
type Instruments struct {
	Tracer  Tracer
	Metrics Metrics
	Logger  Logger
}

// Normalize fills unset fields with no-op implementations.
func (i Instruments) Normalize() Instruments {
	if i.Tracer == nil {
		i.Tracer = NopTracer()
	}
	if i.Metrics == nil {
		i.Metrics = NopMetrics()
	}
	if i.Logger == nil {
		i.Logger = NopLogger()
	}
	return i
}

// NopInstruments returns instruments that discard everything.
func NopInstruments() Instruments {
	return Instruments{}.Normalize()
}

// InstrumentsFromObserver builds Instruments from an Observer.
func InstrumentsFromObserver(obs Observer) (Instruments, error) {
	if obs == nil {
		return Instruments{}, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return Instruments{}, err
	}

	return Instruments{
		Tracer:  NewTracer(obs.Tracer()),
		Metrics: metrics,
		Logger:  obs.Logger(),
	}, nil
}
