// Package mongo connects to MongoDB with the official v2 driver. The contact
// directory used by the channel adapters lives in the configured database.
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(context.Background())
package mongo
