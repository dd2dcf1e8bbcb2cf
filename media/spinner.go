package media

// Spinner hands out backup groups round-robin.
type Spinner struct {
	curr int
	base int
}

func NewSpinner(base int) *Spinner {
	return &Spinner{base: max(1, base)}
}

func (s *Spinner) Next() int {
	v := s.curr % s.base
	s.curr++
	return v
}

// Total is the number of values handed out so far.
func (s *Spinner) Total() int {
	return s.curr
}
