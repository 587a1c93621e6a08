package hardware

import "fmt"

// FFmpegPath is the ffmpeg executable the transcoder runs.
var FFmpegPath = defaultFFmpegPath

// CPUEncoder is the software H.264 encoder every ffmpeg build is expected
// to have.
const CPUEncoder = "libx264"

type Vendor string

const (
	VendorNVIDIA  Vendor = "nvidia"
	VendorAMD     Vendor = "amd"
	VendorIntel   Vendor = "intel"
	VendorUnknown Vendor = "unknown"
)

type GPU struct {
	Index    int
	Name     string
	Vendor   Vendor
	Encoders []Encoder
}

func (g *GPU) String() string {
	return fmt.Sprintf("[%d] %s (%s)", g.Index, g.Name, g.Vendor)
}

// PreferredEncoder returns the GPU's first encoder the ffmpeg build can
// use, or nil.
func (g *GPU) PreferredEncoder() *Encoder {
	for i := range g.Encoders {
		if g.Encoders[i].Available {
			return &g.Encoders[i]
		}
	}
	return nil
}

type GPUList []*GPU

func (l GPUList) FindByIndex(index int) *GPU {
	for _, g := range l {
		if g.Index == index {
			return g
		}
	}
	return nil
}

// Encoder is an ffmpeg H.264 encoder and where it runs.
type Encoder struct {
	Name      string
	Vendor    Vendor
	Available bool
	GPUIndex  int // -1 for CPU
}

func (e Encoder) Hardware() bool { return e.GPUIndex >= 0 }

type SystemInfo struct {
	GPUs GPUList
	// Encoders lists every GPU encoder followed by the CPU fallback.
	Encoders []Encoder
}

func (s *SystemInfo) GetEncoder(name string) *Encoder {
	for i := range s.Encoders {
		if s.Encoders[i].Name == name {
			return &s.Encoders[i]
		}
	}
	return nil
}

func (s *SystemInfo) GetAvailableEncoders() []Encoder {
	var result []Encoder
	for _, e := range s.Encoders {
		if e.Available {
			result = append(result, e)
		}
	}
	return result
}
