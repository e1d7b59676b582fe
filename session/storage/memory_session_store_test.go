package storage

import (
	"sync"
	"testing"
	"time"

	"github.com/freekieb7/embedio/session"
	"github.com/freekieb7/embedio/test"
)

func TestMemorySessionStore(t *testing.T) {
	store := NewMemorySessionStore()
	defer store.Close()

	sess := session.NewDefaultSession(session.NewID(), MemorySessionStoreName, nil)
	sess.Set("user", "alice")
	test.AssertNoError(t, store.Save(sess))

	test.AssertTrue(t, store.Has(sess.GetId()), "saved session should be found")
	attributes, err := store.Get(sess.GetId())
	test.AssertNoError(t, err)
	test.AssertEqual(t, "alice", attributes["user"])

	// the store keeps its own copy
	attributes["user"] = "mallory"
	attributes, _ = store.Get(sess.GetId())
	test.AssertEqual(t, "alice", attributes["user"])

	test.AssertNoError(t, store.Delete(sess.GetId()))
	_, err = store.Get(sess.GetId())
	test.AssertErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStorePurgeExpired(t *testing.T) {
	store := NewMemorySessionStore()

	expiring := session.NewDefaultSession("expiring", MemorySessionStoreName, nil)
	expiring.Touch(time.Minute)
	permanent := session.NewDefaultSession("permanent", MemorySessionStoreName, nil)
	store.Save(expiring)
	store.Save(permanent)

	test.AssertEqual(t, 0, store.PurgeExpired(time.Now()))
	test.AssertEqual(t, 1, store.PurgeExpired(time.Now().Add(2*time.Minute)))
	test.AssertEqual(t, 1, store.Len())
	test.AssertTrue(t, store.Has("permanent"), "session without expiry should survive")
}

func TestMemorySessionStoreConcurrentSave(t *testing.T) {
	store := NewMemorySessionStore()
	sess := session.NewDefaultSession("shared", MemorySessionStoreName, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess.Set("counter", i)
			store.Save(sess)
		}(i)
	}
	wg.Wait()

	test.AssertTrue(t, store.Has("shared"), "session should be stored")
}
