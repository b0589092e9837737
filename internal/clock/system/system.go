// Package system provides the wall-clock implementation of media.Clock.
package system

import "time"

// Clock returns the current UTC time.
type Clock struct{}

// New constructs a Clock.
func New() *Clock { return &Clock{} }

// Now returns time.Now in UTC.
func (c *Clock) Now() time.Time { return time.Now().UTC() }
