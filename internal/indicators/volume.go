package indicators

// VolumeMA is the simple moving average of volume over p bars
func VolumeMA(volumes []float64, p int) []float64 {
	return SMA(volumes, p)
}

// VolumeRatio divides each volume by its moving average; undefined where the average is undefined or zero
func VolumeRatio(volumes, ma []float64) []float64 {
	out := NaN(len(volumes))
	for i := range volumes {
		if i >= len(ma) || !Defined(ma[i]) || ma[i] == 0 {
			continue
		}
		out[i] = volumes[i] / ma[i]
	}
	return out
}
