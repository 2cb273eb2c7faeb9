package coordinator

import "os"

// seedPollState stats every tracked file once so the first tick of
// runPoll has a baseline to compare against, rather than reporting
// every file as changed on the very first poll.
func seedPollState(p *pollState) {
	for _, path := range p.paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		p.sizes[path] = info.Size()
		p.mtimes[path] = info.ModTime()
	}
}

// statChangedFiles re-stats every tracked file and returns the ones
// whose size or modification time moved since the last poll, plus any
// that disappeared since their baseline was taken.
func statChangedFiles(p *pollState) []string {
	var changed []string
	for _, path := range p.paths {
		info, err := os.Stat(path)
		if err != nil {
			if _, hadSize := p.sizes[path]; hadSize {
				// Had a baseline, gone now: the deletion itself is the
				// change. Dropping the baseline also makes a later
				// re-creation register as a fresh change.
				changed = append(changed, path)
				delete(p.sizes, path)
				delete(p.mtimes, path)
			}
			continue
		}
		prevSize, hadSize := p.sizes[path]
		prevMtime := p.mtimes[path]
		if !hadSize || info.Size() != prevSize || !info.ModTime().Equal(prevMtime) {
			changed = append(changed, path)
		}
		p.sizes[path] = info.Size()
		p.mtimes[path] = info.ModTime()
	}
	return changed
}
