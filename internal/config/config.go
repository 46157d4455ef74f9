package config

import "time"

type AppConfig struct {
	Device          string
	VideoDevice     string
	TrueLepton      int
	Colormap        string
	SpeedMHz        int
	RangeMin        int
	RangeMax        int
	Debug           bool
	DebugFrameRate  float64
	ForwardEndpoint string
	ListenEndpoint  string
	Port            int
	RawLogDir       string
	LogEvery        int
	StallTimeout    time.Duration
	ResyncThreshold int
}
