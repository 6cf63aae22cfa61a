// Package moderation implements the content-moderation decision engine:
// classifier providers (remote inference API and local on-device models), the
// remote-then-local fallback cascade, and the signal-fusion rules which turn
// raw classifier outputs into a single safety verdict.
//
// The HTTP layer (cmd/sentinel) calls Engine.ModerateText and
// Engine.ModerateImage; everything else in this package is plumbing behind
// those two entry points.
package moderation
