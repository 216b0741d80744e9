// File: transport/doc.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

// Package transport provides nonblocking datagram, stream and listener
// sockets over the OS socket interface, implementing the socket
// contract the reactor drives. Socket errors surface as structured
// would-block or OS-failure errors. The reactor does not own the
// descriptors: detaching leaves them open, and only Reactor.CloseAll
// closes the attached sockets.
package transport
