package cache

import "log/slog"

// Tag labels data an entry provides. A mutation that invalidates a tag
// marks every entry providing it stale.
type Tag string

type tagSet map[Tag]struct{}

func newTagSet(tags []Tag) tagSet {
	s := make(tagSet, len(tags))
	s.add(tags)
	return s
}

func (s tagSet) add(tags []Tag) {
	for _, t := range tags {
		s[t] = struct{}{}
	}
}

func (s tagSet) intersects(tags []Tag) bool {
	for _, t := range tags {
		if _, ok := s[t]; ok {
			return true
		}
	}
	return false
}

// Invalidate marks every entry providing one of tags as stale and refetches
// it. It does not wait for the refetches to finish.
func (c *Cache) Invalidate(tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	var stale []*entry
	for _, e := range c.entries {
		if !e.tags.intersects(tags) {
			continue
		}
		e.stale = true
		e.staleAfter = e.seq
		stale = append(stale, e)
	}
	c.mu.Unlock()

	for _, e := range stale {
		c.log.Debug("entry invalidated", slog.String("key", e.key.String()))
		c.refresh(e)
	}

	return len(stale)
}
