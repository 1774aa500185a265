// Package rate implements Redis fixed-window counters and the login and
// refresh limiter built on them.
//
// A window opens on the first [Hit] (INCR, then EXPIRE only when the counter
// was just created) and closes when the key expires. Keys have the shape
// <prefix>:<namespace>:<tenant>:<subject>; refresh subjects are token
// fingerprints, never raw tokens.
//
// Policy for the other flows lives in internal/limiters.
package rate
