// Package pipeline binds the REST request/response transformation to the
// kernel lifecycle.
//
// # Interception points
//
// The Coordinator registers at every kernel phase and re-evaluates the
// request matcher at each one, so sub-requests are judged on their own:
//
//	request        → RequestTransformer.Transform
//	exception      → ResponseTransformer.CreateResponse(error)
//	view           → ResponseTransformer.CreateResponse(result)
//	response early → ResponseTransformer.TransformEarly (content negotiation)
//	response late  → ResponseTransformer.TransformLate (wrapping, headers)
//
// # Ordering
//
// Ordering is an explicit list rather than numeric priorities. Listeners
// returns
//
//	[front, application listeners..., back]
//
// The front listener handles the request, exception, view and early response
// points, so the request is normalized before any application listener sees
// it. The back listener only handles the late response point and therefore
// always runs after the early one, whatever produced the response.
//
// A request that does not match passes every point untouched.
package pipeline
