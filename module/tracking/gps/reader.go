package gps

import (
	"bufio"
	"io"
	"strings"
	"time"

	nmea "github.com/adrianmo/go-nmea"

	"github.com/Michaelch2406/MascotaLink-sub003/module/tracking/domain"
)

const (
	// DefaultUERE is the user equivalent range error, in meters, that turns
	// HDOP into an accuracy radius for a consumer-grade receiver.
	DefaultUERE = 5.0

	knotsToMetersPerSecond = 0.514444
)

// Reader turns a stream of NMEA sentences into position fixes. One fix is
// produced per valid RMC sentence once a GGA sentence has reported HDOP.
type Reader struct {
	scanner *bufio.Scanner
	uere    float64

	hdop     float64
	haveHDOP bool
}

func NewReader(r io.Reader) *Reader {
	return &Reader{scanner: bufio.NewScanner(r), uere: DefaultUERE}
}

// Next returns the next fix, or io.EOF when the stream ends. Sentences that
// fail to parse are skipped.
func (r *Reader) Next() (domain.PositionFix, error) {
	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if !strings.HasPrefix(line, "$") {
			continue
		}

		sentence, err := nmea.Parse(line)
		if err != nil {
			continue
		}

		switch sentence.DataType() {
		case nmea.TypeGGA:
			m := sentence.(nmea.GGA)
			r.haveHDOP = m.FixQuality != nmea.Invalid && m.HDOP > 0
			r.hdop = m.HDOP
		case nmea.TypeRMC:
			m := sentence.(nmea.RMC)
			if fix, ok := r.fromRMC(m); ok {
				return fix, nil
			}
		}
	}
	if err := r.scanner.Err(); err != nil {
		return domain.PositionFix{}, err
	}
	return domain.PositionFix{}, io.EOF
}

func (r *Reader) fromRMC(m nmea.RMC) (domain.PositionFix, bool) {
	if m.Validity != nmea.ValidRMC || !r.haveHDOP || !m.Date.Valid || !m.Time.Valid {
		return domain.PositionFix{}, false
	}
	speed := m.Speed * knotsToMetersPerSecond
	return domain.PositionFix{
		Lat:        m.Latitude,
		Lon:        m.Longitude,
		Accuracy:   r.hdop * r.uere,
		Speed:      &speed,
		CapturedAt: fixTime(m.Date, m.Time),
	}, true
}

// fixTime combines the RMC date and time. NMEA carries a two digit year;
// receivers in service today report 20xx.
func fixTime(d nmea.Date, t nmea.Time) time.Time {
	return time.Date(2000+d.YY, time.Month(d.MM), d.DD, t.Hour, t.Minute, t.Second, t.Millisecond*int(time.Millisecond), time.UTC)
}
