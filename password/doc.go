// Package password hashes and verifies passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<key>
//
// Only the demo server's user directory uses this package. The engine never sees passwords.
package password
