package implementation

import (
	"context"
	"errors"
	"time"

	tlmmodels "gitlab.com/maplesense1/mpt.telemetry_server/src/production/TLM.Models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTelemetryRepository is the document-store variant of the telemetry
// store. Devices are one document each, keyed by device_id; the viewer
// mapping is an embedded viewer_ids array.
type MongoTelemetryRepository struct {
	coll *mongo.Collection
}

func NewMongoTelemetryRepository(coll *mongo.Collection) *MongoTelemetryRepository {
	return &MongoTelemetryRepository{coll: coll}
}

func (r *MongoTelemetryRepository) UpsertReport(ctx context.Context, report tlmmodels.Report) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ts := time.Now().Unix()
	if report.TS != nil {
		ts = *report.TS
	}

	set := bson.M{"ts": ts, "updated_at": time.Now()}
	if report.Lat != nil {
		set["lat"] = *report.Lat
	}
	if report.Lon != nil {
		set["lon"] = *report.Lon
	}
	if report.SOC != nil {
		set["soc"] = *report.SOC
	}
	if report.Voltage != nil {
		set["v"] = *report.Voltage
	}
	if report.Temperature != nil {
		set["t"] = *report.Temperature
	}

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"device_id": report.DeviceID, "created_at": time.Now()},
	}

	_, err := r.coll.UpdateOne(ctx, bson.M{"device_id": report.DeviceID}, update,
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoTelemetryRepository) CreateDevice(ctx context.Context, deviceID string, name *string, lat, lon *float64) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	set := bson.M{"updated_at": time.Now()}
	if name != nil {
		set["name"] = *name
	}
	if lat != nil {
		set["lat"] = *lat
	}
	if lon != nil {
		set["lon"] = *lon
	}

	onInsert := bson.M{
		"device_id":  deviceID,
		"ts":         time.Now().Unix(),
		"created_at": time.Now(),
	}
	if lat == nil {
		onInsert["lat"] = float64(0)
	}
	if lon == nil {
		onInsert["lon"] = float64(0)
	}

	update := bson.M{"$set": set, "$setOnInsert": onInsert}

	_, err := r.coll.UpdateOne(ctx, bson.M{"device_id": deviceID}, update,
		options.Update().SetUpsert(true))
	return err
}

func (r *MongoTelemetryRepository) GetDevice(ctx context.Context, deviceID string) (*tlmmodels.Device, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var device tlmmodels.Device
	err := r.coll.FindOne(ctx, bson.M{"device_id": deviceID}).Decode(&device)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, tlmmodels.ErrNotFound
		}
		return nil, err
	}

	return &device, nil
}

func (r *MongoTelemetryRepository) ListDevices(ctx context.Context, scope tlmmodels.Scope) ([]tlmmodels.Device, error) {
	if scope.Empty() {
		return []tlmmodels.Device{}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if !scope.All {
		filter = bson.M{"$or": bson.A{
			bson.M{"owner_user_id": scope.UserID},
			bson.M{"viewer_ids": scope.UserID},
		}}
	}

	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	devices := []tlmmodels.Device{}
	if err := cursor.All(ctx, &devices); err != nil {
		return nil, err
	}

	return devices, nil
}

func (r *MongoTelemetryRepository) SetOwner(ctx context.Context, deviceID, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"device_id": deviceID},
		bson.M{"$set": bson.M{"owner_user_id": userID, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return tlmmodels.ErrNotFound
	}
	return nil
}

func (r *MongoTelemetryRepository) AddViewer(ctx context.Context, userID, deviceID string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"device_id": deviceID},
		bson.M{"$addToSet": bson.M{"viewer_ids": userID}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return tlmmodels.ErrNotFound
	}
	return nil
}

func (r *MongoTelemetryRepository) SetSecretHash(ctx context.Context, deviceID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.coll.UpdateOne(ctx, bson.M{"device_id": deviceID},
		bson.M{"$set": bson.M{"api_token_hash": hash, "updated_at": time.Now()}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return tlmmodels.ErrNotFound
	}
	return nil
}
