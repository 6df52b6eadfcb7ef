// Package batch runs large argument datasets through the SumAPI batch
// endpoint.
//
// The dataset is split into contiguous packets (default 250 items) that are
// posted one after another. Each packet goes through the client's resilient
// send, so a gateway failure or connectivity error is retried once after the
// fixed backoff and an expired token is refreshed and the packet resent once.
//
// Example usage:
//
//	exec := batch.NewExecutor(sumapiClient, batch.DefaultConfig())
//	result, err := exec.Run(ctx, args)
//	if err != nil {
//	    // result holds the evaluations of the packets that completed
//	}
//
// The executor:
//   - Sends nothing for an empty dataset
//   - Keeps evaluations in dataset order
//   - Stops and returns the raw body when the service answers with non-JSON
//   - Returns a BatchItemError when a packet comes back without evaluations
//   - Returns partial results with any terminal error; there is no resume
package batch
