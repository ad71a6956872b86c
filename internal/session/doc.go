// Package session implements the single-session BLE manager.
//
// A Manager owns one adapter handle and at most one connected peripheral together
// with its discovered characteristics. Operations follow one discipline: take the
// lock, copy out the handles the operation needs, release the lock, perform the
// blocking hardware calls, and re-take the lock only to commit a fully built value.
// No lock is ever held across a hardware call or a settling delay.
//
// The adapter and the connection state live behind two independent locks. Code that
// needs both takes the adapter lock first.
package session
