// Package constant defines the route paths shared by the handlers, the
// middleware and the browser UI.
package constant

const (
	// RoutePrefix is the mount point of every API endpoint.
	RoutePrefix = "/gitCaptain"

	// LegacyRoutePrefix is the old API mount point, now answered with a moved notice.
	LegacyRoutePrefix = "/api/v1"

	// BatchStreamPath is the websocket endpoint of the batch stream.
	BatchStreamPath = RoutePrefix + "/batch/stream"

	// AuthenticatedPage receives the OAuth code after GitHub's redirect.
	AuthenticatedPage = "/authenticated.html"
)
