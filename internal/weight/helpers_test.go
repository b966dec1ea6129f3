package weight

import "time"

// day returns noon UTC of the given date.
func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sample(y int, m time.Month, d int, w float64) Sample {
	return Sample{Date: day(y, m, d), Weight: w}
}

// onRow places s on a source row, as a sheet decode does.
func onRow(s Sample, row int) Sample {
	s.row = row
	return s
}
