package decoder

import "fmt"

// Only board 0, channels 0 to 2 are kept.
const MonitoredChannels = 3

type ChannelWaveform struct {
	Board   int
	Channel int
	Samples []int
}

// Event holds one trigger. It is owned by the EventReader and overwritten by
// the next call to Next.
type Event struct {
	Number           int
	Index            int
	BoardCount       int
	PayloadWords     int
	Waveforms        [MonitoredChannels]ChannelWaveform
	FooterMismatches []int
}

func (e *Event) Channel(channel int) ([]int, error) {
	if channel < 0 || channel >= MonitoredChannels {
		return nil, fmt.Errorf("channel %d is not monitored, only channels 0-%d are kept", channel, MonitoredChannels-1)
	}
	return e.Waveforms[channel].Samples, nil
}

func (e *Event) reset() {
	for i := range e.Waveforms {
		e.Waveforms[i].Board = 0
		e.Waveforms[i].Channel = i
		e.Waveforms[i].Samples = e.Waveforms[i].Samples[:0]
	}
	e.FooterMismatches = e.FooterMismatches[:0]
}
