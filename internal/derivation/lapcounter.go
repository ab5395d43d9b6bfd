package derivation

// LapCounter recomputes CurrentLap from the store's post-apply
// TimingData.Lines view:
// CurrentLap = max(1, 1 + max over drivers of NumberOfLaps).
func LapCounter(lines map[string]any) int {
	max := 0
	for _, v := range lines {
		driver, ok := asObject(v)
		if !ok {
			continue
		}
		if n, ok := numberOfLaps(driver); ok && n > max {
			max = n
		}
	}
	current := max + 1
	if current < 1 {
		current = 1
	}
	return current
}
