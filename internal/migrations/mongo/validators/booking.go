package validators

import "go.mongodb.org/mongo-driver/bson"

var numeric = []string{"double", "int", "long", "decimal"}

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"name",
			"email",
			"phone",
			"area",
			"serviceType",
			"seatType",
			"seatCount",
			"total",
			"paymentMethod",
			"paymentStatus",
			"bookingStatus",
			"createdAt",
			"updatedAt",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},

			"phone": bson.M{
				"bsonType": "string",
				"pattern":  "^254[0-9]{9}$",
			},

			"area": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 100,
			},

			"serviceType": bson.M{
				"bsonType": "string",
				"enum":     []string{"seats", "mattress", "bedframe"},
			},

			"seatCount": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  10,
			},

			"total": bson.M{
				"bsonType": numeric,
				"minimum":  0,
			},

			"date": bson.M{
				"bsonType": []string{"date", "null"},
			},

			"paymentMethod": bson.M{
				"bsonType": "string",
				"enum":     []string{"mpesa", "card", "pay_on_service"},
			},

			"paymentStatus": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "paid", "failed"},
			},

			"bookingStatus": bson.M{
				"bsonType": "string",
				"enum":     []string{"pending", "accepted", "declined", "completed"},
			},

			"mpesaResultCode": bson.M{
				"bsonType": []string{"int", "long"},
			},

			"mpesaAmount": bson.M{
				"bsonType": numeric,
			},

			"createdAt": bson.M{
				"bsonType": "date",
			},

			"updatedAt": bson.M{
				"bsonType": "date",
			},
		},
	},
}
