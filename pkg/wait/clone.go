package wait

import "slices"

// cloner is implemented by every strategy in this package.
type cloner interface {
	clone() Strategy
}

// Clone returns an independent copy of s, so that later With* calls on the original
// do not reach the copy. Strategies from other packages are returned as is.
func Clone(s Strategy) Strategy {
	if c, ok := s.(cloner); ok {
		return c.clone()
	}
	return s
}

func (s *PortStrategy) clone() Strategy {
	c := *s
	c.ports = slices.Clone(s.ports)
	return &c
}

func (s *LogStrategy) clone() Strategy {
	c := *s
	return &c
}

func (s *HealthStrategy) clone() Strategy {
	c := *s
	return &c
}

func (s *RunningStrategy) clone() Strategy {
	c := *s
	return &c
}

func (s *HTTPStrategy) clone() Strategy {
	c := *s
	return &c
}

func (s *SQLStrategy) clone() Strategy {
	c := *s
	return &c
}

func (s *ExecStrategy) clone() Strategy {
	c := *s
	c.cmd = slices.Clone(s.cmd)
	return &c
}

func (s *MultiStrategy) clone() Strategy {
	c := *s
	c.strategies = make([]Strategy, len(s.strategies))
	for i, child := range s.strategies {
		c.strategies[i] = Clone(child)
	}
	return &c
}
