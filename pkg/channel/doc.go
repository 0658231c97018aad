// Package channel delivers stored notification records over EMAIL, SMS, PUSH
// and SYSTEM.
//
// Every medium implements Adapter. Addresses come from a Directory (memory or
// MongoDB). User-addressed records go to that user's contact; role broadcasts
// go to every contact with the role (email, SMS) or to the role's FCM topic
// (push).
//
// SYSTEM delivery is the stored record itself; SystemAdapter additionally
// publishes it to a Hub so connected clients see it live.
//
// Errors wrap ErrDeliveryFailed. IsPermanent separates failures a retry
// cannot fix, such as a missing address.
package channel
