// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

//go:build integration

package postgres_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"golang.org/x/crypto/bcrypt"

	"github.com/passgate/passgate/internal/credential"
	"github.com/passgate/passgate/internal/credential/postgres"
)

var _ = Describe("UserStore", func() {
	var (
		ctx   context.Context
		users *postgres.UserStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		users = postgres.NewUserStore(testPool)
	})

	It("round-trips a user", func() {
		id, err := users.InsertUser(ctx, "alice", "hash")
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(BeNumerically(">", 0))

		u, err := users.FindUserByUsername(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.ID).To(Equal(id))
		Expect(u.PasswordHash).To(Equal("hash"))
	})

	It("reports duplicate usernames as conflicts", func() {
		_, err := users.InsertUser(ctx, "alice", "hash")
		Expect(err).NotTo(HaveOccurred())

		_, err = users.InsertUser(ctx, "alice", "other")
		Expect(err).To(MatchError(credential.ErrDuplicateUsername))
	})

	It("lets exactly one concurrent insert win", func() {
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for range 8 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				if _, err := users.InsertUser(ctx, "racer", "h"); err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
				} else {
					Expect(err).To(MatchError(credential.ErrConflict))
				}
			}()
		}
		wg.Wait()
		Expect(wins).To(Equal(1))
	})

	It("treats usernames as literal values", func() {
		name := "x'; DROP TABLE users; --"
		_, err := users.InsertUser(ctx, name, "hash")
		Expect(err).NotTo(HaveOccurred())

		u, err := users.FindUserByUsername(ctx, name)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Username).To(Equal(name))
	})

	It("updates the password hash", func() {
		id, err := users.InsertUser(ctx, "bob", "old")
		Expect(err).NotTo(HaveOccurred())
		Expect(users.UpdatePasswordHash(ctx, id, "new")).To(Succeed())

		u, err := users.FindUserByUsername(ctx, "bob")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.PasswordHash).To(Equal("new"))

		Expect(users.UpdatePasswordHash(ctx, id+1000, "x")).To(MatchError(credential.ErrNotFound))
	})

	It("returns not found for unknown users", func() {
		_, err := users.FindUserByUsername(ctx, "nobody")
		Expect(err).To(MatchError(credential.ErrNotFound))
	})
})

var _ = Describe("SessionStore", func() {
	var (
		ctx      context.Context
		sessions *postgres.SessionStore
		userID   int64
	)

	BeforeEach(func() {
		ctx = context.Background()
		sessions = postgres.NewSessionStore(testPool)
		var err error
		userID, err = postgres.NewUserStore(testPool).InsertUser(ctx, "sessionuser", "hash")
		Expect(err).NotTo(HaveOccurred())
	})

	newSession := func(hash string, expires time.Duration) *credential.Session {
		now := time.Now().UTC().Truncate(time.Microsecond)
		s, err := credential.NewSession(userID, hash, credential.ClientMeta{UserAgent: "ua", IPAddress: "127.0.0.1"},
			now.Add(-2*time.Hour), now.Add(expires))
		Expect(err).NotTo(HaveOccurred())
		return s
	}

	It("binds, looks up and revokes", func() {
		s := newSession("hash-1", time.Hour)
		Expect(sessions.Bind(ctx, s)).To(Succeed())

		got, err := sessions.Lookup(ctx, "hash-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.ID).To(Equal(s.ID))
		Expect(got.UserID).To(Equal(userID))
		Expect(got.ExpiresAt.Equal(s.ExpiresAt)).To(BeTrue())

		Expect(sessions.Revoke(ctx, "hash-1")).To(Succeed())
		_, err = sessions.Lookup(ctx, "hash-1")
		Expect(err).To(MatchError(credential.ErrNotFound))
		Expect(sessions.Revoke(ctx, "hash-1")).To(MatchError(credential.ErrNotFound))
	})

	It("sweeps expired sessions", func() {
		Expect(sessions.Bind(ctx, newSession("live", time.Hour))).To(Succeed())
		Expect(sessions.Bind(ctx, newSession("dead", -time.Hour))).To(Succeed())

		n, err := sessions.DeleteExpired(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(int64(1)))

		_, err = sessions.Lookup(ctx, "live")
		Expect(err).NotTo(HaveOccurred())
	})
})

var _ = Describe("Service on PostgreSQL", func() {
	It("registers, rotates and logs in", func() {
		ctx := context.Background()
		hasher, err := credential.NewBcryptHasher(bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())

		svc, err := credential.NewService(
			postgres.NewUserStore(testPool),
			postgres.NewSessionStore(testPool),
			hasher,
			credential.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		Expect(err).NotTo(HaveOccurred())

		res, err := svc.Register(ctx, "gina", "password1", credential.ClientMeta{})
		Expect(err).NotTo(HaveOccurred())

		_, err = svc.Register(ctx, "gina", "password1", credential.ClientMeta{})
		Expect(err).To(MatchError(credential.ErrConflict))

		sess, err := svc.ResolveSession(ctx, res.Token)
		Expect(err).NotTo(HaveOccurred())
		Expect(sess.UserID).To(Equal(res.UserID))

		Expect(svc.ChangePassword(ctx, "gina", "newpass99")).To(Succeed())
		_, err = svc.Login(ctx, "gina", "newpass99", credential.ClientMeta{})
		Expect(err).NotTo(HaveOccurred())
		_, err = svc.Login(ctx, "gina", "password1", credential.ClientMeta{})
		Expect(err).To(MatchError(credential.ErrAuthentication))
	})
})
