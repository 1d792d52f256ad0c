// Package cyclicstore owns a slave's cyclic memory areas: RX/RWr
// (slave-to-master, writable by the application) and the RY/RWw views
// refreshed from each validated incoming request.
package cyclicstore

import (
	"errors"
	"fmt"

	"github.com/rtlabs-com/c-link-sub001/internal/cciefb"
	"github.com/rtlabs-com/c-link-sub001/internal/memarea"
)

// ErrStationRangeExceedsConfig is returned by CopyFromRequest when the
// requested station window doesn't fit inside the master's reported
// slave_total_occupied_count.
var ErrStationRangeExceedsConfig = errors.New("cyclicstore: station range exceeds slave_total_occupied_count")

// Store holds the four memory-area groups for a slave configured with N
// occupied stations.
type Store struct {
	n   int
	rx  []memarea.BitArea
	rwr []memarea.WordArea
	ry  []memarea.BitArea
	rww []memarea.WordArea
}

// New allocates a store for n occupied stations.
func New(n int) *Store {
	return &Store{
		n:   n,
		rx:  make([]memarea.BitArea, n),
		rwr: make([]memarea.WordArea, n),
		ry:  make([]memarea.BitArea, n),
		rww: make([]memarea.WordArea, n),
	}
}

// NumOccupiedStations returns N.
func (s *Store) NumOccupiedStations() int { return s.n }

func (s *Store) checkBit(n int) {
	if n < 0 || n >= 64*s.n {
		panic(fmt.Sprintf("cyclicstore: bit index %d out of range [0,%d)", n, 64*s.n))
	}
}

func (s *Store) checkWord(n int) {
	if n < 0 || n >= 32*s.n {
		panic(fmt.Sprintf("cyclicstore: word index %d out of range [0,%d)", n, 32*s.n))
	}
}

// RX reads bit n (0..64N-1) of the slave-to-master RX area.
func (s *Store) RX(n int) bool { s.checkBit(n); return s.rx[n/64].Bit(n % 64) }

// SetRX sets bit n of the slave-to-master RX area.
func (s *Store) SetRX(n int, v bool) { s.checkBit(n); s.rx[n/64].SetBit(n%64, v) }

// RY reads bit n of the master-to-slave RY view, as of the last
// CopyFromRequest.
func (s *Store) RY(n int) bool { s.checkBit(n); return s.ry[n/64].Bit(n % 64) }

// RWr reads word n (0..32N-1) of the slave-to-master RWr area.
func (s *Store) RWr(n int) uint16 { s.checkWord(n); return s.rwr[n/32][n%32] }

// SetRWr sets word n of the slave-to-master RWr area.
func (s *Store) SetRWr(n int, v uint16) { s.checkWord(n); s.rwr[n/32][n%32] = v }

// RWw reads word n of the master-to-slave RWw view, as of the last
// CopyFromRequest.
func (s *Store) RWw(n int) uint16 { s.checkWord(n); return s.rww[n/32][n%32] }

// RXAreas and RWrAreas expose the outgoing areas directly for the response
// builder; they are the same backing arrays SetRX/SetRWr write into.
func (s *Store) RXAreas() []memarea.BitArea   { return s.rx }
func (s *Store) RWrAreas() []memarea.WordArea { return s.rwr }

// CopyFromRequest implements copy_cyclic_data_from_request: startStation is
// master.slave_station_no (1-based within group). If transmissionBit is
// false, our RY/RWw views are zeroed. Otherwise the RY/RWw data for station
// indices [startStation-1, startStation-1+N) is copied verbatim from req.
func (s *Store) CopyFromRequest(req *cciefb.Request, startStation int, transmissionBit bool) error {
	if !transmissionBit {
		for i := range s.ry {
			s.ry[i] = memarea.BitArea{}
			s.rww[i] = memarea.WordArea{}
		}
		return nil
	}
	if req == nil {
		return fmt.Errorf("%w: nil request", ErrStationRangeExceedsConfig)
	}
	lo := startStation - 1
	hi := lo + s.n
	if lo < 0 || hi > len(req.Stations) {
		return fmt.Errorf("%w: [%d,%d) into %d stations", ErrStationRangeExceedsConfig, lo, hi, len(req.Stations))
	}
	for i := 0; i < s.n; i++ {
		s.ry[i] = req.Stations[lo+i].RY
		s.rww[i] = req.Stations[lo+i].RWw
	}
	return nil
}
