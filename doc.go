/*Package tello provides an easy-to-use, standalone driver for drones speaking
the Ryze Tello® text SDK over UDP.

Disclaimer

Tello is a registered trademark of Ryze Tech.  The author(s) of this package
is/are in no way affiliated with Ryze, DJI, or Intel.  The package has been
developed from the vendor's published SDK documentation and from observing
traffic to/from the drone.

Use this package at your own risk.  The author(s) is/are in no way responsible
for any damage caused either to or by the drone when using this software.

Features

The following features have been implemented...
  * Discrete flight commands, eg. TakeOff(), Forward(), TurnDegrees(), Flip()
  * Mission pad queries and pad-relative navigation
  * Drone status queries, eg. Battery(), WifiSNR(), SerialNumber()
  * Live telemetry via a shared sensor table, snapshot or streamed
  * Websocket and MQTT republishing of the telemetry feed
  * A simulated driver sharing the hardware driver's capability surface

Concepts

Connection Types

The drone provides two UDP endpoints: a 'command' endpoint which carries
commands to the drone and their acknowledgements back, and a 'state' endpoint
on which the drone periodically broadcasts a telemetry frame of key:value
pairs.  Connect() binds both, starts a listener for each, and switches the
drone into SDK mode.

Command Semantics

Every command is plain ASCII text and every acknowledgement is either
'ok'/'error' or, for the query commands, a raw value.  The protocol carries
no correlation ids, so this driver keeps at most one command in flight at a
time and retransmits an unacknowledged command on a fixed poll interval until
a small retry budget is spent.  Command methods therefore block for up to
MaxAttempts x PollInterval and report success as a plain bool; a false result
means the drone either answered 'error' or never answered at all.  Callers
that ignore these results may silently be issuing commands the vehicle never
executed - that is a property of the protocol, not of the driver.

Funcs vs. Channels

Telemetry is available in two forms: single-shot snapshots via Sensors() and
Sensor(), and a streaming flow via StreamTelemetry().  The streamer never
blocks (its channel is buffered and unconsumed snapshots are dropped), and it
is also what feeds the TelemetryServer websocket fan-out and the MQTT
TelemetryPublisher.
*/
package tello
