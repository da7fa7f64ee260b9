package directory

import "time"

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

// SeedProfiles returns the built-in directory used when no store is
// configured.
func SeedProfiles() []Profile {
	return []Profile{
		{
			ID:          "1",
			Name:        "Sarah Johnson",
			Avatar:      "https://images.pexels.com/photos/774909/pexels-photo-774909.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "UX Designer with a passion for creating intuitive digital experiences",
			DetailedBio: "Sarah is a senior UX designer with over 8 years of experience working with tech startups and established companies. She specializes in user research, wireframing, and prototyping.",
			Email:       "sarah.johnson@example.com",
			Phone:       "+1 (555) 123-4567",
			Website:     "www.sarahjohnson.design",
			Company:     "InnovateTech",
			Position:    "Senior UX Designer",
			Location: Location{
				Address:     "123 Design Avenue",
				City:        "San Francisco",
				State:       "CA",
				Country:     "USA",
				PostalCode:  "94105",
				Coordinates: &Coordinates{Lat: 37.7749, Lng: -122.4194},
			},
			Tags: []string{"UX", "Design", "Technology", "Creative"},
			SocialMedia: map[string]string{
				"twitter":   "@sarahjdesign",
				"linkedin":  "sarahjohnson",
				"github":    "sarahj",
				"instagram": "sarahjohnsondesign",
			},
			CreatedAt: day("2023-01-15"),
			UpdatedAt: day("2023-03-20"),
		},
		{
			ID:          "2",
			Name:        "Michael Chen",
			Avatar:      "https://images.pexels.com/photos/220453/pexels-photo-220453.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "Full-stack developer specializing in React and Node.js ecosystems",
			DetailedBio: "Michael is a full-stack developer with particular expertise in React, Node.js, and cloud infrastructure. He has built scalable applications for fintech and e-commerce.",
			Email:       "michael.chen@example.com",
			Phone:       "+1 (555) 987-6543",
			Website:     "www.michaelchen.dev",
			Company:     "TechSolutions Inc.",
			Position:    "Senior Developer",
			Location: Location{
				Address:     "456 Coding Street",
				City:        "Seattle",
				State:       "WA",
				Country:     "USA",
				PostalCode:  "98101",
				Coordinates: &Coordinates{Lat: 47.6062, Lng: -122.3321},
			},
			Tags: []string{"Development", "React", "Node.js", "JavaScript"},
			SocialMedia: map[string]string{
				"twitter":   "@michaelcdev",
				"linkedin":  "michaelchen",
				"github":    "michaelc",
				"instagram": "michael.codes",
			},
			CreatedAt: day("2023-02-10"),
			UpdatedAt: day("2023-04-05"),
		},
		{
			ID:          "3",
			Name:        "Emma Rodriguez",
			Avatar:      "https://images.pexels.com/photos/415829/pexels-photo-415829.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "Marketing specialist with expertise in digital campaigns and analytics",
			DetailedBio: "Emma is a results-driven marketing professional with expertise in digital marketing strategy, content creation, and analytics.",
			Email:       "emma.rodriguez@example.com",
			Phone:       "+1 (555) 234-5678",
			Website:     "www.emmarodriguez.marketing",
			Company:     "Global Marketing Solutions",
			Position:    "Digital Marketing Manager",
			Location: Location{
				Address:     "789 Marketing Boulevard",
				City:        "New York",
				State:       "NY",
				Country:     "USA",
				PostalCode:  "10001",
				Coordinates: &Coordinates{Lat: 40.7128, Lng: -74.0060},
			},
			Tags: []string{"Marketing", "Digital", "Analytics", "Content"},
			SocialMedia: map[string]string{
				"twitter":   "@emmarketing",
				"linkedin":  "emmarodriguez",
				"instagram": "emma.marketing",
			},
			CreatedAt: day("2023-03-05"),
			UpdatedAt: day("2023-05-12"),
		},
		{
			ID:          "4",
			Name:        "David Kim",
			Avatar:      "https://images.pexels.com/photos/2379004/pexels-photo-2379004.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "Data scientist specializing in machine learning and predictive analytics",
			DetailedBio: "David is an experienced data scientist with a PhD in Statistics. He develops machine learning models for predictive analytics across healthcare, finance, and retail.",
			Email:       "david.kim@example.com",
			Phone:       "+1 (555) 345-6789",
			Website:     "www.davidkim.ai",
			Company:     "DataMinds Analytics",
			Position:    "Lead Data Scientist",
			Location: Location{
				Address:     "101 Data Drive",
				City:        "Boston",
				State:       "MA",
				Country:     "USA",
				PostalCode:  "02108",
				Coordinates: &Coordinates{Lat: 42.3601, Lng: -71.0589},
			},
			Tags: []string{"Data Science", "AI", "Machine Learning", "Analytics"},
			SocialMedia: map[string]string{
				"twitter":  "@davidkimAI",
				"linkedin": "davidkim",
				"github":   "davidk",
			},
			CreatedAt: day("2023-01-25"),
			UpdatedAt: day("2023-04-18"),
		},
		{
			ID:          "5",
			Name:        "Sophie Martin",
			Avatar:      "https://images.pexels.com/photos/1036623/pexels-photo-1036623.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "Environmental consultant specializing in sustainable business practices",
			DetailedBio: "Sophie is an environmental consultant who helps businesses implement sustainable practices and develop eco-friendly supply chains.",
			Email:       "sophie.martin@example.com",
			Phone:       "+44 20 1234 5678",
			Website:     "www.sophiemartin.eco",
			Company:     "GreenFuture Consulting",
			Position:    "Senior Sustainability Consultant",
			Location: Location{
				Address:     "25 Eco Street",
				City:        "London",
				Country:     "UK",
				PostalCode:  "EC1V 7BH",
				Coordinates: &Coordinates{Lat: 51.5074, Lng: -0.1278},
			},
			Tags: []string{"Environment", "Sustainability", "Consulting", "Green Business"},
			SocialMedia: map[string]string{
				"twitter":   "@sophieeco",
				"linkedin":  "sophiemartin",
				"instagram": "sophie.sustainable",
			},
			CreatedAt: day("2023-02-18"),
			UpdatedAt: day("2023-05-02"),
		},
		{
			ID:          "6",
			Name:        "Carlos Mendoza",
			Avatar:      "https://images.pexels.com/photos/2269872/pexels-photo-2269872.jpeg?auto=compress&cs=tinysrgb&w=600",
			Description: "Architect specializing in sustainable urban design and public spaces",
			DetailedBio: "Carlos is an architect focused on sustainable urban design and public spaces, with landmark buildings across Latin America and Europe.",
			Email:       "carlos.mendoza@example.com",
			Phone:       "+34 91 234 5678",
			Website:     "www.carlosmendoza.arch",
			Company:     "Urban Future Architecture",
			Position:    "Principal Architect",
			Location: Location{
				Address:     "15 Arquitectura Plaza",
				City:        "Madrid",
				Country:     "Spain",
				PostalCode:  "28001",
				Coordinates: &Coordinates{Lat: 40.4168, Lng: -3.7038},
			},
			Tags: []string{"Architecture", "Urban Design", "Sustainability", "Public Spaces"},
			SocialMedia: map[string]string{
				"twitter":   "@carlosarchitect",
				"linkedin":  "carlosmendoza",
				"instagram": "carlos.designs",
			},
			CreatedAt: day("2023-03-22"),
			UpdatedAt: day("2023-04-28"),
		},
	}
}
