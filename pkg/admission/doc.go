/*
Package admission implements the max_concurrent_searches gate: a fixed
number of admission slots handed out on a first-come, non-queueing basis.
A caller that cannot get a slot is told to retry rather than blocked, since
a blocked search request is indistinguishable from a slow one to its
caller.
*/
package admission
