package audio

// Voice is one sounding note. It is owned by a Mixer and only touched with
// the mixer lock held.
type Voice struct {
	shape    string
	volume   float64
	phase    float64
	phaseInc float64

	pos     int
	total   int
	attack  int
	release int

	releasing    bool
	releaseAt    int
	releaseLevel float64
}

// voiceParams describes a voice to render.
type voiceParams struct {
	Frequency  float64
	Shape      string
	Volume     float64
	SampleRate int
	Seconds    float64
	AttackMS   int
	ReleaseMS  int
}

func newVoice(p voiceParams) *Voice {
	rate := float64(p.SampleRate)
	total := max(int(rate*p.Seconds), 1)
	release := min(int(rate*float64(p.ReleaseMS)/1000), total)
	return &Voice{
		shape:    p.Shape,
		volume:   p.Volume,
		phaseInc: twoPi * p.Frequency / rate,
		total:    total,
		attack:   int(rate * float64(p.AttackMS) / 1000),
		release:  release,
	}
}

// envelope returns the gain at the current position. The attack ramps up
// from silence; the tail of the voice ramps down over the release time,
// starting early when the note is released.
func (v *Voice) envelope() float64 {
	if v.releasing {
		if v.release == 0 {
			return 0
		}
		return v.releaseLevel * max(0, 1-float64(v.pos-v.releaseAt)/float64(v.release))
	}
	if v.attack > 0 && v.pos < v.attack {
		return float64(v.pos) / float64(v.attack)
	}
	if v.release > 0 && v.pos >= v.total-v.release {
		return max(0, float64(v.total-v.pos)/float64(v.release))
	}
	return 1
}

// Sample returns the next sample and whether the voice has finished.
func (v *Voice) Sample() (float64, bool) {
	if v.done() {
		return 0, true
	}
	value := oscillate(v.shape, v.phase) * v.volume * v.envelope()
	v.phase += v.phaseInc
	if v.phase >= twoPi {
		v.phase -= twoPi
	}
	v.pos++
	return value, v.done()
}

func (v *Voice) done() bool {
	if v.pos >= v.total {
		return true
	}
	return v.releasing && v.pos-v.releaseAt >= v.release
}

// Release starts the release ramp from the current level.
func (v *Voice) Release() {
	if v.releasing {
		return
	}
	v.releaseLevel = v.envelope()
	v.releasing = true
	v.releaseAt = v.pos
}
