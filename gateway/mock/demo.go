package mock

import (
	"fmt"
	"time"

	"github.com/GoCodeAlone/metacat/catalog"
)

// Demo returns a Gateway seeded with a small catalog: an admin, a data
// engineer with conversations, tasks and owned tables, and a database
// service. The admin is the logged in user.
func Demo() *Gateway {
	g := New()
	admin := g.AddUser(catalog.User{Name: "admin", DisplayName: "Admin", IsAdmin: true, Email: "admin@example.com"})
	aaron := g.AddUser(catalog.User{
		Name:        "aaron_johnson0",
		DisplayName: "Aaron Johnson",
		Email:       "aaron_johnson0@example.com",
		Teams:       []catalog.EntityReference{{ID: "team-1", Type: "team", Name: "Sales", DisplayName: "Sales"}},
		Roles:       []catalog.EntityReference{{ID: "role-1", Type: "role", Name: "DataSteward"}},
	})
	g.SetLoggedIn(admin.Name)

	now := time.Now()
	for i := range 12 {
		fqn := fmt.Sprintf("sample_data.ecommerce_db.shopify.dim_%02d", i)
		g.AddEntity(Entity{
			Index: "table_search_index",
			Source: map[string]any{
				"id":                 fmt.Sprintf("table-%02d", i),
				"name":               fmt.Sprintf("dim_%02d", i),
				"fullyQualifiedName": fqn,
				"description":        "Dimension table " + fmt.Sprint(i),
				"entityType":         "table",
				"service":            map[string]any{"name": "sample_data"},
				"owner":              map[string]any{"name": aaron.Name, "displayName": aaron.DisplayName},
				"tier":               map[string]any{"tagFQN": "Tier.Tier2"},
				"tags":               []any{map[string]any{"tagFQN": "PII.None"}},
			},
			OwnerID: aaron.ID,
		})
		g.AddThread(aaron.ID, catalog.Thread{
			About:       "<#E::table::" + fqn + ">",
			CreatedBy:   admin.Name,
			Message:     fmt.Sprintf("Can we document the columns of dim_%02d?", i),
			ThreadTs:    now.Add(-time.Duration(12-i) * time.Hour).UnixMilli(),
			EntityOwner: aaron.Name,
			Posts: []catalog.Post{
				{Message: "On it.", From: aaron.Name, PostTs: now.Add(-time.Duration(12-i) * time.Hour).UnixMilli()},
			},
		})
	}
	g.AddEntity(Entity{
		Index: "topic_search_index",
		Source: map[string]any{
			"id":                 "topic-orders",
			"name":               "orders",
			"fullyQualifiedName": "sample_kafka.orders",
			"entityType":         "topic",
			"service":            "sample_kafka",
		},
		OwnerID:   aaron.ID,
		Followers: []string{admin.ID},
	})

	g.AddThread(aaron.ID, catalog.Thread{
		Type:      catalog.ThreadTask,
		About:     "<#E::table::sample_data.ecommerce_db.shopify.dim_00::description>",
		CreatedBy: admin.Name,
		Message:   "Update description for dim_00",
		ThreadTs:  now.UnixMilli(),
		Task:      &catalog.TaskDetails{ID: 1, Type: "UpdateDescription", Status: catalog.TaskOpen},
	})
	g.AddThread(aaron.ID, catalog.Thread{
		Type:      catalog.ThreadTask,
		About:     "<#E::table::sample_data.ecommerce_db.shopify.dim_01::tags>",
		CreatedBy: admin.Name,
		Message:   "Request tags for dim_01",
		ThreadTs:  now.UnixMilli(),
		Task:      &catalog.TaskDetails{ID: 2, Type: "RequestTag", Status: catalog.TaskClosed},
	})

	g.AddService("databaseServices", catalog.Service{
		Name:        "sample_data",
		ServiceType: "BigQuery",
		Description: "Sample warehouse",
		Owner:       &catalog.EntityReference{ID: aaron.ID, Type: "user", Name: aaron.Name},
		Connection: &catalog.Connection{Config: map[string]any{
			"type":     "BigQuery",
			"hostPort": "bigquery.googleapis.com",
		}},
	})
	g.AddService("metadataServices", catalog.Service{
		Name:        "OpenMetadata",
		ServiceType: "OpenMetadata",
		Connection:  &catalog.Connection{Config: map[string]any{"hostPort": "http://localhost:8585/api"}},
	})
	return g
}
