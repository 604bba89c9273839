// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package fifo gives access to named pipes (mkfifo special files),
// and implements a reader, which echoes everything written into a pipe.
package fifo
