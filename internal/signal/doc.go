// Package signal stores named infrared signals and relays them to an IR
// transceiver.
//
// A Signal is a carrier frequency in kHz plus an ordered list of on/off
// durations. Records are keyed by a unique name and persisted through a
// Repository; the SQLite implementation keeps one row per name in the
// ir_signals table with the durations stored as a JSON array.
//
// The Service is the use-case layer shared by the HTTP API, the import
// command and the MQTT bridge:
//
//	svc := signal.NewService(signal.NewSQLiteRepository(db.DB), remoClient)
//	svc.SetLogger(log)
//	svc.AddSendListener(hub)
//
//	if err := svc.Create(ctx, "living-room-ac-on", sig); err != nil {
//	    if errors.Is(err, signal.ErrSignalExists) {
//	        // 409
//	    }
//	}
//	err := svc.Send(ctx, "living-room-ac-on")
//
// Send reads the record and then calls the relay as two separate steps.
// A concurrent delete between them is not guarded against: the send then
// uses the copy already read.
package signal
