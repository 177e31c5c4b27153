// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/moduni/moduni/cmd/moduni"

func main() {
	cmd.Execute()
}
