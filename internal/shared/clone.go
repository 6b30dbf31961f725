package shared

// CloneFloats returns an independent copy of a float slice.
func CloneFloats(values []float64) []float64 {
	if values == nil {
		return nil
	}
	cloned := make([]float64, len(values))
	copy(cloned, values)
	return cloned
}

// Clone performs a deep clone of an Audio snapshot.
func (a Audio) Clone() Audio {
	return Audio{Waveform: CloneFloats(a.Waveform), SampleRate: a.SampleRate}
}

// Clone performs a deep clone of an Image snapshot.
func (im Image) Clone() Image {
	return Image{
		Channels: im.Channels,
		Height:   im.Height,
		Width:    im.Width,
		Pixels:   CloneFloats(im.Pixels),
	}
}

// Clone performs a deep clone of a Review. Accumulators clone what they keep
// so a model reusing its buffers cannot corrupt already recorded snapshots.
func (r *Review) Clone() *Review {
	if r == nil {
		return nil
	}
	cloned := &Review{}
	if r.Losses != nil {
		cloned.Losses = make(map[string]float64, len(r.Losses))
		for k, v := range r.Losses {
			cloned.Losses[k] = v
		}
	}
	if r.Scalars != nil {
		cloned.Scalars = make(map[string]float64, len(r.Scalars))
		for k, v := range r.Scalars {
			cloned.Scalars[k] = v
		}
	}
	if r.Histograms != nil {
		cloned.Histograms = make(map[string][]float64, len(r.Histograms))
		for k, v := range r.Histograms {
			cloned.Histograms[k] = CloneFloats(v)
		}
	}
	if r.Audios != nil {
		cloned.Audios = make(map[string]Audio, len(r.Audios))
		for k, v := range r.Audios {
			cloned.Audios[k] = v.Clone()
		}
	}
	if r.Images != nil {
		cloned.Images = make(map[string]Image, len(r.Images))
		for k, v := range r.Images {
			cloned.Images[k] = v.Clone()
		}
	}
	return cloned
}
