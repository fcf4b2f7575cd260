package advice

import "github.com/ecopulse/ecopulse/internal/models"

type Lang string

const (
	LangTR Lang = "tr"
	LangEN Lang = "en"
)

// ParseLang returns LangEN for "en" and LangTR for anything else.
func ParseLang(s string) Lang {
	if Lang(s) == LangEN {
		return LangEN
	}
	return LangTR
}

type text struct {
	header           string
	situation        string // appended to the city name
	strategiesHeader string
	strategies       []string
	citizensHeader   string
	citizenRecs      []string
}

var texts = map[Lang]map[models.Category]text{
	LangTR: {
		models.CategoryPoor: {
			header:           "Durum Analizi: Kritik Seviye",
			situation:        " şehrinin ekolojik sağlığı kritik bir seviyededir. Hava kalitesi, su kaynakları ve kentsel ısı adası gibi konularda acil iyileştirmeler gerekmektedir.",
			strategiesHeader: "Yerel Yönetim İçin Stratejiler:",
			strategies: []string{
				"Kirlilik kaynaklarını tespit etmek için şehir genelinde sensör ağları kurun.",
				"Araç trafiğini azaltmak için toplu taşımayı teşvik edin ve yeşil koridorlar oluşturun.",
				"Su kayıp-kaçak oranlarını düşürmek için altyapı çalışmalarına öncelik verin.",
			},
			citizensHeader: "Vatandaşlar İçin Öneriler:",
			citizenRecs: []string{
				"Mümkün olduğunca toplu taşıma, bisiklet veya yürümeyi tercih edin.",
				"Su tüketimini azaltmak için evde tasarruflu armatürler kullanın.",
				"Yerel çevre temizliği etkinliklerine katılarak farkındalık yaratın.",
			},
		},
		models.CategoryAverage: {
			header:           "Durum Analizi: Denge Arayışı",
			situation:        " şehrinin ekolojik durumu orta seviyededir, ancak iyileştirme için önemli bir potansiyel barındırmaktadır.",
			strategiesHeader: "Yerel Yönetim İçin Stratejiler:",
			strategies: []string{
				"Binalarda enerji verimliliğini artırmak için yalıtım ve yeşil çatı programları başlatın.",
				"Geri dönüşüm oranlarını artırmak için atık ayrıştırma tesislerine yatırım yapın.",
				"Park ve rekreasyon alanlarını genişleterek şehirdeki yeşil dokuyu güçlendirin.",
			},
			citizensHeader: "Vatandaşlar İçin Öneriler:",
			citizenRecs: []string{
				"Atıklarınızı (cam, plastik, kağıt) ayrıştırarak geri dönüşüme kazandırın.",
				"Enerji tasarruflu ampuller ve ev aletleri kullanarak elektrik tüketimini azaltın.",
				"Balkonunuzda veya bahçenizde küçük ölçekli de olsa bitki yetiştirin.",
			},
		},
		models.CategoryGood: {
			header:           "Durum Analizi: Yeşil Başarı",
			situation:        " şehrinin ekolojik sağlığı iyi durumdadır. Bu başarının korunması için sürdürülebilirlik ve inovasyon odaklı politikalar izlenmelidir.",
			strategiesHeader: "Yerel Yönetim İçin Stratejiler:",
			strategies: []string{
				"Kamu binaları ve sokak aydınlatmaları için yenilenebilir enerji kullanımını artırın.",
				"Döngüsel ekonomi modellerini destekleyerek atık üretimini en aza indirin.",
				"Yerel biyoçeşitliliği korumak için doğal yaşam alanları oluşturun.",
			},
			citizensHeader: "Vatandaşlar İçin Öneriler:",
			citizenRecs: []string{
				"Yerel ve sürdürülebilir ürünler satan işletmeleri destekleyin.",
				"Yağmur suyu hasadı gibi yöntemlerle su kaynaklarını daha verimli kullanın.",
				"Çevresel konularda bilinçlenmek için yerel seminerlere katılın.",
			},
		},
	},
	LangEN: {
		models.CategoryPoor: {
			header:           "Analysis: Critical Level",
			situation:        "'s ecological health is at a critical level. Urgent improvements are required in areas like air quality, water resources, and urban heat island effect.",
			strategiesHeader: "Strategies for Local Government:",
			strategies: []string{
				"Establish city-wide sensor networks to identify pollution sources.",
				"Promote public transport to reduce traffic and create green corridors.",
				"Prioritize infrastructure works to reduce water loss rates.",
			},
			citizensHeader: "Recommendations for Citizens:",
			citizenRecs: []string{
				"Prefer public transport, cycling, or walking.",
				"Use water-saving fixtures at home to reduce consumption.",
				"Participate in local cleanup events to raise awareness.",
			},
		},
		models.CategoryAverage: {
			header:           "Analysis: Seeking Balance",
			situation:        "'s ecological condition is average, but holds significant potential for improvement.",
			strategiesHeader: "Strategies for Local Government:",
			strategies: []string{
				"Launch green roof programs to increase energy efficiency in buildings.",
				"Invest in waste sorting facilities to increase recycling rates.",
				"Strengthen the city's green fabric by expanding parks.",
			},
			citizensHeader: "Recommendations for Citizens:",
			citizenRecs: []string{
				"Sort your waste (glass, plastic, paper) for recycling.",
				"Reduce electricity consumption with energy-saving appliances.",
				"Grow plants on your balcony or in your garden.",
			},
		},
		models.CategoryGood: {
			header:           "Analysis: Green Achievement",
			situation:        "'s ecological health is in good condition. To maintain this success, sustainability and innovation-focused policies should be pursued.",
			strategiesHeader: "Strategies for Local Government:",
			strategies: []string{
				"Increase the use of renewable energy for public buildings.",
				"Minimize waste generation by supporting circular economy models.",
				"Create natural habitats to protect local biodiversity.",
			},
			citizensHeader: "Recommendations for Citizens:",
			citizenRecs: []string{
				"Support local and sustainable businesses.",
				"Use water resources more efficiently with methods like rainwater harvesting.",
				"Participate in local seminars to become more environmentally conscious.",
			},
		},
	},
}
