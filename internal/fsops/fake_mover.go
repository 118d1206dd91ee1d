package fsops

import "sync"

// Recorder implements Mover for testing
// Records all calls without touching any filesystem
type Recorder struct {
	mu    sync.Mutex
	Calls []string
	Err   error // returned from every call when set
}

func (r *Recorder) Move(src, dst string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "mv:"+src+"->"+dst)
	return dst, r.Err
}

func (r *Recorder) Rename(src, dst string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, "rename:"+src+"->"+dst)
	return r.Err
}

// Len returns the number of recorded calls
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Calls)
}
