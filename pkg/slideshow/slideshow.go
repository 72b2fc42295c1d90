// Package slideshow rotates through the catalog on a fixed period.
package slideshow

import (
	"log"
	"time"

	"general-display/pkg/catalog"
)

// Source is a read-only view of the catalog
type Source interface {
	Len() int
	At(i int) catalog.Descriptor
}

// Controller holds the rotation state. Timestamps are durations since boot.
// It never starts on its own and is forced off while the source is empty.
type Controller struct {
	src    Source
	period time.Duration

	running    bool
	index      int
	lastSwitch time.Duration
}

type State struct {
	Running bool          `json:"running"`
	Index   int           `json:"index"`
	Period  time.Duration `json:"period"`
}

func New(src Source, period time.Duration) *Controller {
	return &Controller{src: src, period: period}
}

// Start resets the rotation to the first entry. It reports whether the
// slideshow is running, which it is not for an empty catalog.
func (c *Controller) Start() bool {
	c.index, c.lastSwitch = 0, 0
	c.running = c.src.Len() > 0
	if c.running {
		log.Printf("Slideshow: started over %d images", c.src.Len())
	} else {
		log.Println("Slideshow: nothing to show")
	}
	return c.running
}

func (c *Controller) Stop() {
	if c.running {
		log.Println("Slideshow: stopped")
	}
	c.running = false
}

// Tick advances to the next entry once a full period has passed since the
// last switch and returns the entry to render.
func (c *Controller) Tick(now time.Duration) (catalog.Descriptor, bool) {
	if !c.running {
		return catalog.Descriptor{}, false
	}
	n := c.src.Len()
	if n == 0 {
		c.running = false
		return catalog.Descriptor{}, false
	}
	if now-c.lastSwitch < c.period {
		return catalog.Descriptor{}, false
	}

	c.index = (c.index + 1) % n
	c.lastSwitch = now
	return c.src.At(c.index), true
}

// SuspendOneCycle restarts the period at now, leaving the current entry,
// while another screen occupies the display.
func (c *Controller) SuspendOneCycle(now time.Duration) {
	c.lastSwitch = now
}

// Refresh reconciles the rotation with a rescanned catalog
func (c *Controller) Refresh() {
	n := c.src.Len()
	if n == 0 {
		if c.running {
			log.Println("Slideshow: catalog empty, stopping")
		}
		c.running = false
		c.index = 0
		return
	}
	if c.index >= n {
		c.index = 0
	}
}

func (c *Controller) Running() bool { return c.running }

func (c *Controller) Index() int { return c.index }

func (c *Controller) State() State {
	return State{Running: c.running, Index: c.index, Period: c.period}
}
