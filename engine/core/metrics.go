package core

import "time"

const avgCount = 30

// Metrics keeps a rolling frame time average and the frames counted over
// the last second.
type Metrics struct {
	frameAvgCounter    int
	msTimes            [avgCount]float64
	msAvg              float64
	frames             int
	accumulatedFrameMS float64
	fps                float64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(frameTime time.Duration) {
	// Calculate frame ms average
	frameMS := float64(frameTime) / float64(time.Millisecond)
	m.msTimes[m.frameAvgCounter] = frameMS
	if m.frameAvgCounter == avgCount-1 {
		sum := 0.0
		for _, t := range m.msTimes {
			sum += t
		}
		m.msAvg = sum / avgCount
	}
	m.frameAvgCounter = (m.frameAvgCounter + 1) % avgCount

	// Calculate Frames per second.
	m.accumulatedFrameMS += frameMS
	if m.accumulatedFrameMS > 1000 {
		m.fps = float64(m.frames)
		m.accumulatedFrameMS -= 1000
		m.frames = 0
	}

	// Count all Frames.
	m.frames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

// FrameTime is the average frame time in milliseconds.
func (m *Metrics) FrameTime() float64 {
	return m.msAvg
}
