package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roffe/gobs1200"
)

func init() {
	if err := bs1200.RegisterAdapter(&bs1200.AdapterInfo{
		Name:               "Replay",
		Description:        "Plays a CBOR capture file, port is the file path",
		RequiresSerialPort: false,
		New:                NewReplay,
	}); err != nil {
		panic(err)
	}
}

// Replay is an adapter that delivers the incoming frames of a capture.
// Sends are accepted and dropped. With the "realtime" option set to
// "true" frames are paced by their recorded timestamps, and "loop" restarts
// a paced replay at the end of the file.
type Replay struct {
	*bs1200.BaseAdapter
	path     string
	realtime bool
	loop     bool
	wg       sync.WaitGroup
}

func NewReplay(cfg *bs1200.AdapterConfig) (bs1200.Adapter, error) {
	r := &Replay{
		BaseAdapter: bs1200.NewBaseAdapter("Replay", cfg),
		path:        cfg.Port,
	}
	if cfg.AdditionalConfig != nil {
		r.realtime = cfg.AdditionalConfig["realtime"] == "true"
		r.loop = cfg.AdditionalConfig["loop"] == "true"
	}
	return r, nil
}

func (r *Replay) Open(ctx context.Context) error {
	if r.path == "" {
		return fmt.Errorf("no capture file given")
	}
	rd, err := OpenFile(r.path)
	if err != nil {
		return err
	}
	records, err := rd.ReadAll()
	rd.Close()
	if err != nil {
		return fmt.Errorf("read capture %s: %w", r.path, err)
	}
	r.Info(fmt.Sprintf("replaying %d records from %s", len(records), r.path))
	r.wg.Add(1)
	go r.play(ctx, records)
	return nil
}

func (r *Replay) play(ctx context.Context, records []Record) {
	defer r.wg.Done()
	for {
		var last time.Time
		for _, rec := range records {
			if rec.Outgoing {
				continue
			}
			if r.realtime && !last.IsZero() {
				if d := rec.Time.Sub(last); d > 0 {
					t := time.NewTimer(d)
					select {
					case <-ctx.Done():
						t.Stop()
						return
					case <-r.Done():
						t.Stop()
						return
					case <-t.C:
					}
				}
			}
			last = rec.Time
			if err := r.DeliverWait(ctx, rec.Frame()); err != nil {
				return
			}
		}
		if !r.loop || !r.realtime {
			r.Info("replay finished")
			return
		}
	}
}

func (r *Replay) Send(ctx context.Context, f *bs1200.Frame) error {
	select {
	case <-r.Done():
		return bs1200.ErrAdapterClosed
	default:
	}
	return f.Validate()
}

func (r *Replay) Close() error {
	r.BaseAdapter.Close()
	r.wg.Wait()
	return nil
}
