/*
Package main is the application package of findy-triangle, the SSI trust
triangle demo. One process runs two agents, the issuer which is also the
verifier, and the holder. At startup the agents connect to each other, and
after that the demo API can be used to register the schema and the credential
definition, to issue the credential to the holder and to verify it.

The agent protocols are asynchronous and event driven. The exchange
coordinator (agent/exchange) turns them to linear calls: it starts waiters at
both ends before the initiating command is sent, and it lets the auto-actor
answer on behalf of the responder. That way an exchange either reaches its
terminal state at both ends or it fails with the timeout.

# Usage

	findy-triangle server start
	findy-triangle register --schema-name email
	findy-triangle issue --cred-def-id <ID> --holder-name Alice
	findy-triangle verify --cred-def-id <ID>

The server can be configured with the flags, with the TRIANGLE_ prefixed
environment variables, or with the config file given with --config.

# Limits

The agents keep their schemas and credential definitions in memory, and the
verification is a structural check of the presented values. There is no
ledger and no credential cryptography.
*/
package main
