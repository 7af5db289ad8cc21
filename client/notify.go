package client

import "os/exec"

// notify runs the configured notification command with event and args as
// its arguments, asynchronously so a slow or hung command never contends
// with the cooperative loop's suspension points (spec §5). Grounded on
// ratatox.c's companion script launcher, which the distilled spec drops;
// SPEC_FULL.md restores it as an optional hook.
func (c *Client) notify(event string, args ...string) {
	if c.cfg.NotifyCommand == "" {
		return
	}
	cmdArgs := append([]string{event}, args...)
	cmd := exec.Command(c.cfg.NotifyCommand, cmdArgs...)
	go func() {
		if err := cmd.Run(); err != nil {
			c.log.WithError(err).WithField("event", event).Warn("notify command failed")
		}
	}()
}
