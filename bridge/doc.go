// Package bridge provides the session-scoped client on top of the ERiC binding.
//
// A Client sequences one engine session:
//
//	client, err := bridge.Open(bridge.Options{})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//	result, err := client.Validate(bridge.ValidateRequest{XML: doc, DatenartVersion: "ESt_2020"})
//
// Run does the same with a callback and always shuts the engine down. The
// engine state is process-wide and not documented as re-entrant, so only one
// Client should be initialized per process and a Client must not be used from
// several goroutines at once.
package bridge
