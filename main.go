// SPDX-License-Identifier: MPL-2.0

package main

import cmd "fnup-cli/cmd/fnup"

func main() {
	cmd.Execute()
}
