package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatterPlurals(t *testing.T) {
	f := NewFormatter("en")
	assert.Equal(t, "1 row updated in stock", f.Format(Notification{Kind: KindSuccess, Table: "stock", Committed: 1}))
	assert.Equal(t, "3 rows updated in stock", f.Format(Notification{Kind: KindSuccess, Table: "stock", Committed: 3}))
	assert.Equal(t, "1 of 3 rows failed to update in stock",
		f.Format(Notification{Kind: KindError, Table: "stock", Committed: 2, Failed: []string{"2"}}))
}

func TestFormatterFallsBackToEnglish(t *testing.T) {
	f := NewFormatter("not a tag")
	assert.Equal(t, "2 rows updated in t", f.Format(Notification{Kind: KindSuccess, Table: "t", Committed: 2}))
}

func TestFormattedFillsMessage(t *testing.T) {
	rec := &Recorder{}
	n := Formatted(NewFormatter("en"), rec)
	n.Notify(context.Background(), Notification{Kind: KindSuccess, Table: "t", Committed: 2})
	n.Notify(context.Background(), Notification{Kind: KindSuccess, Table: "t", Message: "kept"})

	all := rec.All()
	require.Len(t, all, 2)
	assert.Equal(t, "2 rows updated in t", all[0].Message)
	assert.Equal(t, "kept", all[1].Message)
}

func TestMultiSkipsNil(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	Multi{a, nil, b, LogNotifier{}}.Notify(context.Background(), Notification{Kind: KindError})
	assert.Len(t, a.All(), 1)
	assert.Len(t, b.All(), 1)
}

func TestRedisNotifierPublishes(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	sub := client.Subscribe(ctx, DefaultChannel)
	t.Cleanup(func() { _ = sub.Close() })
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	notifier := NewRedisNotifier(client, "", nil)
	assert.Equal(t, DefaultChannel, notifier.Channel())
	notifier.Notify(ctx, Notification{Kind: KindError, Table: "price_table_items", Committed: 2, Failed: []string{"5"}})

	select {
	case msg := <-sub.Channel():
		var got Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, KindError, got.Kind)
		assert.Equal(t, []string{"5"}, got.Failed)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not published")
	}
}
