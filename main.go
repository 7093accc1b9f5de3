/*
main.go

Copyright © 2025 Code Monkey Cybersecurity
Contact: git@cybermonkey.net.au

This file is part of sshaccess.

This software is dual-licensed under the Do No Harm License
and the GNU Affero General Public License v3 (AGPL-3.0-or-later).
You may use, modify, and distribute it under the terms of either license.

See LICENSE.agpl and LICENSE.dnh for full details.
*/
package main

import (
	"os"

	"github.com/CodeMonkeyCybersecurity/sshaccess/cmd"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/logger"
	"github.com/CodeMonkeyCybersecurity/sshaccess/pkg/telemetry"
	"github.com/awnumar/memguard"
	"go.uber.org/zap"
)

func main() {
	logger.InitializeWithFallback()
	if err := telemetry.Init("sshaccess"); err != nil {
		logger.L().Warn("Telemetry disabled", zap.Error(err))
	}

	// Ctrl-C cancels the command context, so Purge also runs on interrupt.
	code := cmd.Execute()
	memguard.Purge()
	os.Exit(code)
}
