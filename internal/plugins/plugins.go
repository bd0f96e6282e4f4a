// Package plugins declares the common mount interface for FrostGate's
// feature-flagged optional surfaces (mission envelope, ring router, ROE
// engine endpoints, forensics, governance). Their route shapes are part of
// the external contract; their internals are pluggable modules outside the
// core decision pipeline.
package plugins

import "github.com/go-chi/chi/v5"

// Surface is a pluggable HTTP surface that mounts itself onto a router only
// when its feature flag is enabled. Disabled surfaces are simply never
// mounted, so chi's default handler reports them as 404 (§4.1).
type Surface interface {
	// Name identifies the surface for logging.
	Name() string
	// Mount attaches the surface's routes under the given router.
	Mount(r chi.Router)
}

// MountEnabled mounts every surface whose flag is true.
func MountEnabled(r chi.Router, surfaces ...struct {
	Enabled bool
	Surface Surface
}) {
	for _, s := range surfaces {
		if s.Enabled {
			s.Surface.Mount(r)
		}
	}
}
