/*
Package probe executes bounded health checks against monitored targets.

Two check kinds exist, resolved once at target-load time:

  - ping: a single ICMP echo round trip (unprivileged by default)
  - tcp: a transport-layer connect to a specific service port

A check never blocks past its timeout and never reports ordinary network
failure as an error; failures come back as a Result carrying a reason code
(timeout, refused, unreachable, protocol). The Prober wraps a checker with
the target's retry policy: up to N attempts within one Probe call, first
success wins.

Example:

	checker := probe.NewTCPChecker("192.168.1.1:80").WithTimeout(time.Second)
	prober := probe.NewProber(checker, 3)
	result := prober.Probe(ctx)
	if !result.Healthy {
		fmt.Println(result.Reason, result.Message)
	}
*/
package probe
