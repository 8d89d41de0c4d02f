// Package aguriparse reads Aguri log files: line-oriented flow summaries
// bracketed by preamble timestamps, producing parsed flow entries and the
// aggregation-boundary markers the two-pass driver triggers on.
package aguriparse

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/agurim/agurim/internal/agflow"
	"github.com/agurim/agurim/internal/hhhengine"
)

// timeLayout matches the preamble's "%a %b %d %T %Y" strptime format, e.g.
// "Mon Jan  2 15:04:05 2006". The underscore lets single-digit days parse
// with either a leading space or zero, as strptime's %d accepts both.
const timeLayout = "Mon Jan _2 15:04:05 2006"

// Boundary is one aggregation window's start/end timestamps, read from a
// %%StartTime:/%%EndTime: preamble pair.
type Boundary struct {
	Start time.Time
	End   time.Time
}

// Entry is one parsed (src, dst) flow line together with its protocol-port
// breakdown line. Records() resolves it into the primary/nested record
// pair the engine actually ingests, depending on the configured view.
type Entry struct {
	IP     *agflow.Record
	Protos []*agflow.Record

	// At is the aggregation window this entry was read under: the most
	// recent %%StartTime: timestamp that preceded it. The driver uses it
	// to detect when aggr_interval/total_duration has elapsed and a new
	// discovery or plotting pass is due.
	At time.Time
}

// Records returns the record(s) Entry contributes to the engine's primary
// store under view: in [hhhengine.AddressView] the IP record carries every
// protocol entry as its Subflow; in [hhhengine.ProtocolView] each protocol
// entry is itself a primary record carrying the IP as its lone Subflow —
// mirroring the source's two read_in branches (odflow_addcount +
// subodflow_addcount, called in one order or the other depending on view).
func (e Entry) Records(view hhhengine.View) (records []*agflow.Record) {
	if view == hhhengine.ProtocolView {
		records = make([]*agflow.Record, 0, len(e.Protos))
		for _, p := range e.Protos {
			rec := cloneRecord(p)
			rec.AddSubflow(e.IP)
			records = append(records, rec)
		}

		return records
	}

	ip := cloneRecord(e.IP)
	for _, p := range e.Protos {
		ip.AddSubflow(p)
	}

	return []*agflow.Record{ip}
}

func cloneRecord(r *agflow.Record) (clone *agflow.Record) {
	clone = agflow.NewRecord(r.Spec, r.AF)
	clone.AddCounts(r.Byte, r.Packet)

	return clone
}

// ipLineRe matches a flow-record header line, e.g.:
//
//	[ 8] 10.178.141.0/24 *: 21817049 (3.19%)	17852 (1.21%)
//
// Group 1 is "src dst" (space-separated). The group is greedy, so it ends
// at the last ": <count>" on the line and colons inside IPv6 literals stay
// part of the addresses.
var ipLineRe = regexp.MustCompile(
	`^\[\s*\d+\]\s+(.+):\s+(\d+)\s+\([\d.]+%\)\s+(\d+)\s+\([\d.]+%\)\s*$`,
)

// protoEntryRe matches one [proto:sport:dport]byte%% pkt%% token.
var protoEntryRe = regexp.MustCompile(
	`\[([^:\]]+):([^:\]]+):([^:\]]+)\]\s*([\d.]+)%%?\s+([\d.]+)%%?`,
)

func classify(line string) (kind lineKind, payload string) {
	if line == "" || strings.HasPrefix(line, "#") {
		return lineSkip, ""
	}

	if strings.HasPrefix(line, "%") {
		rest := strings.TrimPrefix(line, "%")
		switch {
		case strings.HasPrefix(rest, "%StartTime:"):
			return lineStartTime, strings.TrimPrefix(rest, "%StartTime:")
		case strings.HasPrefix(rest, "%EndTime:"):
			return lineEndTime, strings.TrimPrefix(rest, "%EndTime:")
		default:
			return lineSkip, ""
		}
	}

	if !strings.HasPrefix(line, "[") {
		return lineSkip, ""
	}

	return lineFlow, line
}

type lineKind uint8

const (
	lineSkip lineKind = iota
	lineStartTime
	lineEndTime
	lineFlow
)

func parseTimestamp(payload string) (t time.Time, err error) {
	s := strings.TrimSpace(payload)
	// Keep only the strptime-formatted portion; the log also appends a
	// parenthesized ISO-ish restatement the original ignores on read.
	if idx := strings.Index(s, "("); idx >= 0 {
		s = strings.TrimSpace(s[:idx])
	}

	t, err = time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("aguriparse: bad timestamp %q: %w", payload, err)
	}

	return t, nil
}

// parseIPLine parses a flow-record header line into a record carrying the
// flow's total byte/packet counts. ok is false for any malformed line,
// which the caller silently skips per the spec's error-handling policy.
func parseIPLine(line string) (rec *agflow.Record, ok bool) {
	m := ipLineRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}

	fields := strings.Fields(m[1])
	if len(fields) != 2 {
		return nil, false
	}

	byteCount, err := strconv.ParseUint(m[2], 10, 64)
	if err != nil {
		return nil, false
	}

	packetCount, err := strconv.ParseUint(m[3], 10, 64)
	if err != nil {
		return nil, false
	}

	srcAF, srcBytes, srcLen, err := parseAddr(fields[0])
	if err != nil {
		return nil, false
	}

	dstAF, dstBytes, dstLen, err := parseAddr(fields[1])
	if err != nil {
		return nil, false
	}

	if srcAF != dstAF {
		return nil, false
	}

	spec := agflow.Spec{Src: srcBytes, Dst: dstBytes, SrcLen: srcLen, DstLen: dstLen}
	rec = agflow.NewRecord(spec, srcAF)
	rec.AddCounts(byteCount, packetCount)

	return rec, true
}

// parseProtoLine parses the protocol-distribution line following a flow
// header into per-entry proto-port records, apportioning totalByte/
// totalPacket by each entry's listed percentage the way the source's
// is_proto does (fbyte * byte / 100).
func parseProtoLine(line string, totalByte, totalPacket uint64) (protos []*agflow.Record, ok bool) {
	matches := protoEntryRe.FindAllStringSubmatch(line, -1)
	if len(matches) == 0 {
		return nil, false
	}

	for _, m := range matches {
		srcPort, srcLen, err := parsePort(m[1], m[2])
		if err != nil {
			continue
		}

		dstPort, dstLen, err := parsePort(m[1], m[3])
		if err != nil {
			continue
		}

		bytePct, err := strconv.ParseFloat(m[4], 64)
		if err != nil {
			continue
		}

		pktPct, err := strconv.ParseFloat(m[5], 64)
		if err != nil {
			continue
		}

		spec := agflow.Spec{Src: srcPort, Dst: dstPort, SrcLen: srcLen, DstLen: dstLen}
		rec := agflow.NewRecord(spec, agflow.AddrFamilyProto)
		rec.AddCounts(
			uint64(bytePct*float64(totalByte)/100),
			uint64(pktPct*float64(totalPacket)/100),
		)
		protos = append(protos, rec)
	}

	return protos, len(protos) > 0
}

// ParseReader scans r for Aguri-formatted flow entries and boundary
// markers. Malformed lines are silently skipped; an unparsable preamble
// timestamp emits a warning to stderr but does not stop processing,
// matching the spec's error-handling policy for preamble dates.
func ParseReader(r io.Reader) (entries []Entry, boundaries []Boundary, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	var cur Boundary
	var haveStart bool

	for scanner.Scan() {
		line := scanner.Text()
		kind, payload := classify(line)

		switch kind {
		case lineStartTime:
			t, perr := parseTimestamp(payload)
			if perr != nil {
				fmt.Fprintln(os.Stderr, perr)

				continue
			}
			if haveStart {
				boundaries = append(boundaries, cur)
			}
			cur = Boundary{Start: t}
			haveStart = true

			continue
		case lineEndTime:
			t, perr := parseTimestamp(payload)
			if perr != nil {
				fmt.Fprintln(os.Stderr, perr)

				continue
			}
			cur.End = t

			continue
		case lineSkip:
			continue
		}

		ipRec, ok := parseIPLine(line)
		if !ok {
			continue
		}

		if !scanner.Scan() {
			break
		}

		protos, ok := parseProtoLine(scanner.Text(), ipRec.Byte, ipRec.Packet)
		if !ok {
			continue
		}

		entries = append(entries, Entry{IP: ipRec, Protos: protos, At: cur.Start})
	}

	if haveStart {
		boundaries = append(boundaries, cur)
	}

	return entries, boundaries, scanner.Err()
}
