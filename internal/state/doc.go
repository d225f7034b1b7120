// Package state holds the shared node state synchronised from inbound MQTT traffic.
//
// The Store is a mutex-guarded string→string mapping plus a dirty flag and
// a caller-owned wake Signal. It is mutated only by parsed inbound
// messages:
//
//   - state-change: {"state_change": {k: v}} overwrites existing keys only;
//     unknown keys are logged and skipped, the rest of the message applies
//   - register: {"id", "position_type", "position", "state"} inserts or
//     overwrites id, position_type, position and every state entry
//
// After a message is applied the dirty flag is set and the Signal is
// notified exactly once, regardless of how many keys changed.
//
// # Decoding
//
// Decode tries the known shapes in a fixed order (state-change, then
// register) and fails with ErrUnknownMessage only when every shape fails.
// Required fields must be present; a document with neither shape's fields
// is rejected rather than applied as an empty update.
//
// # Usage
//
//	wake := state.NewSignal()
//	store := state.NewStore(wake)
//	receiver.AddCallback(state.SyncHandler(store, log))
//
//	for {
//	    if err := wake.Wait(ctx); err != nil {
//	        return err
//	    }
//	    if store.ClearDirty() {
//	        render(store.Snapshot())
//	    }
//	}
package state
