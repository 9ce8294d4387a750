// Copyright © 2024 the ms2 authors
//
// This source code is governed by the MIT license, which can be found in the LICENSE file.

package main

import "github.com/tvkit/ms2/cmd/ms2/commands"

func main() {
	commands.Execute()
}
