// Package intercept holds the load-request interceptors that run before
// navigation listeners are asked, and the error page renderer.
//
// Interceptors form an ordered Chain; the first that reports handled
// decides the request and listeners never see it. Interceptors that only
// observe (user agent overrides, the DRM gate) always pass.
package intercept
