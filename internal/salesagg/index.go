package salesagg

// Index partitions the active sales of a snapshot by year and by (year, month) so that a
// window can be selected without re-checking status and re-parsing dates of every sale. An
// Index is immutable once built and safe for concurrent use.
type Index struct {
	active  []Sale
	byYear  map[int][]int
	byMonth map[[2]int][]int
}

// NewIndex builds an index over sales. Only active sales are retained, in input order.
func NewIndex(sales []Sale) *Index {
	idx := &Index{
		byYear:  make(map[int][]int),
		byMonth: make(map[[2]int][]int),
	}
	for _, s := range sales {
		if !s.Status.Active() {
			continue
		}
		pos := len(idx.active)
		idx.active = append(idx.active, s)
		p := ResolvePeriod(s)
		if !p.YearOK {
			continue
		}
		idx.byYear[p.Year] = append(idx.byYear[p.Year], pos)
		if p.MonthOK {
			key := [2]int{p.Year, p.Month}
			idx.byMonth[key] = append(idx.byMonth[key], pos)
		}
	}
	return idx
}

// Len returns the number of active sales held by the index.
func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.active)
}

// Active returns every active sale in input order.
func (i *Index) Active() []Sale {
	if i == nil {
		return nil
	}
	return i.active
}

// Select returns the active sales matching the window, preserving input order.
func (i *Index) Select(w Window) []Sale {
	if i == nil {
		return nil
	}
	var positions []int
	switch w.View {
	case ViewOverall, "":
		return i.active
	case ViewYear:
		positions = i.byYear[w.Year]
	case ViewMonth:
		positions = i.byMonth[[2]int{w.Year, w.Month}]
	default:
		return nil
	}
	out := make([]Sale, 0, len(positions))
	for _, pos := range positions {
		out = append(out, i.active[pos])
	}
	return out
}
