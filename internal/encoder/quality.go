package encoder

import (
	"fmt"
	"strings"

	"screenrec/internal/errs"
)

// Quality is an encoding profile tier. It picks the bitrate when a job
// does not set one explicitly.
type Quality int

const (
	QualityAuto Quality = iota
	QualityHD1080p
	QualityHD720p
	QualityWVGA
	QualityNTSC
	QualityPAL
	QualityVGA
	QualityQVGA
	QualityUHD2160p
	QualityUHD4320p
)

var qualityNames = []string{
	QualityAuto:     "auto",
	QualityHD1080p:  "1080p",
	QualityHD720p:   "720p",
	QualityWVGA:     "wvga",
	QualityNTSC:     "ntsc",
	QualityPAL:      "pal",
	QualityVGA:      "vga",
	QualityQVGA:     "qvga",
	QualityUHD2160p: "2160p",
	QualityUHD4320p: "4320p",
}

func (q Quality) String() string {
	if q.Valid() {
		return qualityNames[q]
	}
	return fmt.Sprintf("quality(%d)", int(q))
}

func (q Quality) Valid() bool {
	return q >= QualityAuto && int(q) < len(qualityNames)
}

// ParseQuality accepts the names printed by String.
func ParseQuality(s string) (Quality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "default":
		return QualityAuto, nil
	case "uhd2160p", "4k":
		return QualityUHD2160p, nil
	case "uhd4320p", "8k":
		return QualityUHD4320p, nil
	}
	for i, name := range qualityNames {
		if name == s {
			return Quality(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown quality %q", errs.ErrInvalidProfile, s)
}

// BestBitrate returns the bitrate in bits per second for q at fps. Rates
// other than 60 use the 30 fps column.
func BestBitrate(q Quality, fps int) int {
	var mbps30, mbps60 int
	switch q {
	case QualityHD1080p:
		mbps30, mbps60 = 16, 24
	case QualityWVGA:
		mbps30, mbps60 = 3, 4
	case QualityNTSC, QualityPAL, QualityVGA, QualityQVGA:
		mbps30, mbps60 = 1, 2
	case QualityUHD2160p:
		mbps30, mbps60 = 24, 36
	case QualityUHD4320p:
		mbps30, mbps60 = 36, 72
	case QualityAuto, QualityHD720p:
		mbps30, mbps60 = 8, 12
	default:
		mbps30, mbps60 = 5, 9
	}
	if fps == 60 {
		return mbps60 * 1000000
	}
	return mbps30 * 1000000
}
