package commands

import (
	"context"
	"math"
	"strings"
	"time"

	"teacher1/config"
	"teacher1/datastore/flatfs"
	"teacher1/datastore/leveldb"
	"teacher1/tutor"

	log "github.com/sirupsen/logrus"
)

const infoJournalTail = 20

// RunInfo prints what the nodes have stored: student profiles with their
// progress reports, archived transcripts and the tail of each relay journal.
func RunInfo(ctx context.Context, cfg *config.Config) {
	idx, err := leveldb.NewProfileIndex(cfg.DataStore.ProfilePath)
	if err != nil {
		log.Fatalf("Failed to open profile index: %v", err)
	}
	defer idx.Close()

	profiles, err := idx.Enumerate()
	if err != nil {
		log.Errorf("Failed to enumerate profiles: %v", err)
	}
	log.Infof("Profile index: %d students known", len(profiles))
	for _, p := range profiles {
		log.Infof("Student: %s, age: %d, sessions: %d, last active: %s",
			p.Name, p.Age, len(p.Sessions), p.LastActive.Local().Format("2006-01-02 15:04"))
		for _, line := range strings.Split(tutor.Assess(p, time.Now()).Report(), "\n") {
			log.Info(line)
		}
	}

	store, err := flatfs.New(cfg.DataStore.TranscriptPath)
	if err != nil {
		log.Fatalf("Failed to open transcript store: %v", err)
	}
	defer store.Close()

	ids, err := store.Enumerate()
	if err != nil {
		log.Errorf("Failed to enumerate transcripts: %v", err)
	}
	log.Infof("Transcript store: %d transcripts archived", len(ids))
	for _, id := range ids {
		t, err := store.Get(id)
		if err != nil {
			log.Errorf("Failed to get transcript %s: %v", id, err)
			continue
		}
		log.Infof("Transcript: %s, node: %s, started: %s, entries: %d",
			t.ID, t.Node, t.Started.Local().Format("2006-01-02 15:04"), len(t.Entries))
	}

	for _, side := range []config.NodeConfig{cfg.Relay.AI, cfg.Relay.Chatbot} {
		if side.JournalPath == "" {
			continue
		}
		infoJournal(side)
	}
}

func infoJournal(side config.NodeConfig) {
	j, err := leveldb.NewJournal(side.JournalPath)
	if err != nil {
		log.Errorf("Failed to open journal of %s: %v", side.Name, err)
		return
	}
	defer j.Close()

	seq := j.GetSeq()
	log.Infof("Journal %s: %d messages", side.Name, seq)
	if seq == 0 {
		return
	}
	start := uint64(1)
	if seq > infoJournalTail {
		start = seq - infoJournalTail + 1
	}
	entries, err := j.EnumerateBySeq(start, math.MaxUint64)
	if err != nil {
		log.Errorf("Failed to enumerate journal of %s: %v", side.Name, err)
		return
	}
	for _, e := range entries {
		log.Infof("  #%d %s %s %s from %s: %s", e.SequenceNumber, e.Timestamp.Local().Format("15:04:05"),
			e.Direction, e.Type, e.Sender, e.Content)
	}
}
