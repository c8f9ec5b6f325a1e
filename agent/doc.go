/*
Package agent holds the packages of the demo's SSI agents and the exchange
coordinator that drives them. The agent package is empty itself.

 bus       per agent event bus of the exchange state changes
 didcomm   agent to agent messages and the shared protocol data types
 exchange  race-safe waiter, responder auto-actor and exchange coordinator
 psm       exchange records (protocol state machines) and their persistence
 ssi       the demo agent: connection, credential and proof protocols
 trans     agent to agent transports, HTTP and in-memory loopback
 utils     settings, version, UUIDs and other helpers
*/
package agent
